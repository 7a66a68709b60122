// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package scale

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/linuxdeepin/go-lib/keyfile"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
)

const (
	minLogicalWidth  = 800
	minLogicalHeight = 480

	// modes wider than this get fractional scales
	fractionalMinWidth = 1920

	maxScale      = 4.0
	fractionStep  = 0.25
	integralStep  = 1.0
	scaleEpsilon  = 0.0001
	defaultFactor = 1.0
)

// RecommendedScaleFactor 根据分辨率和物理尺寸计算推荐的缩放比
func RecommendedScaleFactor(widthPx, heightPx, widthMm, heightMm int32) float64 {
	return NewRecommender().RecommendedScaleFactor(widthPx, heightPx, widthMm, heightMm)
}

// PreferredScale picks the largest supported scale of the mode that does not
// exceed the recommended one.
func PreferredScale(widthPx, heightPx, widthMm, heightMm int32) float64 {
	return NewRecommender().PreferredScale(widthPx, heightPx, widthMm, heightMm)
}

// Recommender holds the force-scale-factor.ini override read once, for
// computing the scales of many modes in a row.
type Recommender struct {
	forceScaleFactor float64
	forced           bool
}

func NewRecommender() *Recommender {
	// 允许用户通过 force-scale-factor.ini 强制设置全局缩放
	forceScaleFactor, err := GetForceScaleFactor()
	return &Recommender{
		forceScaleFactor: forceScaleFactor,
		forced:           err == nil,
	}
}

func (r *Recommender) RecommendedScaleFactor(widthPx, heightPx, widthMm, heightMm int32) float64 {
	if r.forced {
		return r.forceScaleFactor
	}
	return calcRecommendedScaleFactor(float64(widthPx), float64(heightPx),
		float64(widthMm), float64(heightMm))
}

func (r *Recommender) PreferredScale(widthPx, heightPx, widthMm, heightMm int32) float64 {
	recommended := r.RecommendedScaleFactor(widthPx, heightPx, widthMm, heightMm)
	preferred := defaultFactor
	for _, s := range SupportedScales(widthPx, heightPx) {
		if s <= recommended+scaleEpsilon {
			preferred = s
		}
	}
	return preferred
}

// SupportedScales lists the scales a mode of the given size can be shown at.
// 1.0 is always supported.
func SupportedScales(widthPx, heightPx int32) []float64 {
	step := integralStep
	if widthPx > fractionalMinWidth {
		step = fractionStep
	}

	scales := []float64{defaultFactor}
	for s := defaultFactor + step; s <= maxScale+scaleEpsilon; s += step {
		if float64(widthPx)/s < minLogicalWidth || float64(heightPx)/s < minLogicalHeight {
			break
		}
		scales = append(scales, s)
	}
	return scales
}

// IsSupportedScale reports whether s is one of the supported scales of the mode.
func IsSupportedScale(widthPx, heightPx int32, s float64) bool {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return false
	}
	for _, supported := range SupportedScales(widthPx, heightPx) {
		if math.Abs(supported-s) < scaleEpsilon {
			return true
		}
	}
	return false
}

func getForceScaleFactorFile() string {
	return filepath.Join(basedir.GetUserConfigDir(), "deepin/force-scale-factor.ini")
}

// GetForceScaleFactor 允许用户通过 force-scale-factor.ini 强制设置全局缩放
func GetForceScaleFactor() (float64, error) {
	fileName := getForceScaleFactorFile()
	_, err := os.Stat(fileName)
	if err == nil {
		kf := keyfile.NewKeyFile()
		err := kf.LoadFromFile(fileName)
		if err != nil && !os.IsNotExist(err) {
			return defaultFactor, fmt.Errorf("failed to load force-scale-factor.ini: %v", err)
		}
		forceScaleFactor, err := kf.GetFloat64("ForceScaleFactor", "scale")
		if err == nil && forceScaleFactor >= 1.0 && forceScaleFactor <= 3.0 {
			return forceScaleFactor, nil
		}
		return defaultFactor, fmt.Errorf("invalid forceScaleFactor %v: %v", forceScaleFactor, err)
	}
	return defaultFactor, fmt.Errorf("no valid force-scale-factor")
}

// calcRecommendedScaleFactor 计算推荐的缩放比
func calcRecommendedScaleFactor(widthPx, heightPx, widthMm, heightMm float64) float64 {
	if widthMm == 0 || heightMm == 0 {
		return 1
	}

	lenPx := math.Hypot(widthPx, heightPx)
	lenMm := math.Hypot(widthMm, heightMm)

	lenPxStd := math.Hypot(1920, 1080)
	lenMmStd := math.Hypot(477, 268)

	const a = 0.00158
	fix := (lenMm - lenMmStd) * (lenPx / lenPxStd) * a
	scaleFactor := (lenPx/lenMm)/(lenPxStd/lenMmStd) + fix

	return toListedScaleFactor(scaleFactor)
}

func toListedScaleFactor(s float64) float64 {
	const (
		min  = 1.0
		max  = 3.0
		step = 0.25
	)
	if s <= min {
		return min
	} else if s >= max {
		return max
	}

	for i := min; i <= max; i += step {
		if i > s {
			ii := i - step
			d1 := s - ii
			d2 := i - s

			if d1 >= d2 {
				return i
			} else {
				return ii
			}
		}
	}
	return max
}
