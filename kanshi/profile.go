// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kanshi

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Output is one output rule of a profile.
type Output struct {
	Connector string
	Make      string
	Model     string
	Serial    string

	Enabled bool
	// mode, only used when Enabled. Refresh is in mHz.
	Width     int32
	Height    int32
	Refresh   int32
	X         int32
	Y         int32
	Scale     float64
	Transform string
}

// Identity is "make model serial", or the connector name when the
// monitor does not report all three.
func (o *Output) Identity() string {
	if o.Make == "" || o.Model == "" || o.Serial == "" {
		return o.Connector
	}
	return o.Make + " " + o.Model + " " + o.Serial
}

func (o *Output) criteria() string {
	id := o.Identity()
	if id == o.Connector {
		return id
	}
	return strconv.Quote(id)
}

// Profile is a kanshi profile covering every output it names.
type Profile struct {
	Outputs []Output
}

func (p *Profile) sortedOutputs() []Output {
	outs := make([]Output, len(p.Outputs))
	copy(outs, p.Outputs)
	sort.SliceStable(outs, func(i, j int) bool {
		return outs[i].Identity() < outs[j].Identity()
	})
	return outs
}

// Key is the canonical name of the profile, independent of output order.
func (p *Profile) Key() string {
	outs := p.sortedOutputs()
	parts := make([]string, 0, len(outs))
	for i := range outs {
		parts = append(parts, sanitizeName(outs[i].Identity()))
	}
	return strings.Join(parts, "__")
}

func sanitizeName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	name := strings.TrimLeft(sb.String(), ".")
	if name == "" {
		return "_"
	}
	return name
}

// Render returns the profile text. The same profile always renders to the
// same bytes.
func (p *Profile) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "profile %s {\n", p.Key())
	for _, out := range p.sortedOutputs() {
		if !out.Enabled {
			fmt.Fprintf(&buf, "\toutput %s disable\n", out.criteria())
			continue
		}
		fmt.Fprintf(&buf, "\toutput %s enable mode %dx%d@%d.%03dHz position %d,%d scale %s transform %s\n",
			out.criteria(), out.Width, out.Height, out.Refresh/1000, out.Refresh%1000,
			out.X, out.Y, formatScale(out.Scale), transformOrNormal(out.Transform))
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func formatScale(s float64) string {
	str := strconv.FormatFloat(s, 'f', -1, 64)
	if !strings.Contains(str, ".") {
		str += ".0"
	}
	return str
}

func transformOrNormal(t string) string {
	if t == "" {
		return "normal"
	}
	return t
}
