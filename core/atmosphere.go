package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Physical constants used by the atmosphere models.
const (
	StandardGravity    = 9.80665
	AirGasConstant     = 287.05287
	airHeatRatio       = 1.4
	seaLevelPressure   = 101325.0
	seaLevelTemp       = 288.15
	sutherlandConst    = 110.4
	sutherlandBeta     = 1.458e-6
	knotsToMetres      = 0.514444
	isaUpperLimit      = 84852.0
	geopotentialRadius = 6356766.0
)

// ErrSoundingFormat is returned when a sounding document cannot be parsed.
var ErrSoundingFormat = errors.New("malformed sounding")

// isaLayer describes one layer of the International Standard Atmosphere.
type isaLayer struct {
	base     float64 // geopotential base height (m)
	lapse    float64 // K/m
	baseTemp float64
	basePres float64
}

var isaLayers = buildISALayers()

func buildISALayers() []isaLayer {
	bases := []float64{0, 11000, 20000, 32000, 47000, 51000, 71000}
	lapses := []float64{-0.0065, 0, 0.001, 0.0028, 0, -0.0028, -0.002}
	layers := make([]isaLayer, len(bases))
	t, p := seaLevelTemp, seaLevelPressure
	for i := range bases {
		layers[i] = isaLayer{base: bases[i], lapse: lapses[i], baseTemp: t, basePres: p}
		if i+1 < len(bases) {
			dh := bases[i+1] - bases[i]
			t, p = isaStep(layers[i], dh)
		}
	}
	return layers
}

func isaStep(l isaLayer, dh float64) (float64, float64) {
	if l.lapse == 0 {
		return l.baseTemp, l.basePres * math.Exp(-StandardGravity*dh/(AirGasConstant*l.baseTemp))
	}
	t := l.baseTemp + l.lapse*dh
	return t, l.basePres * math.Pow(t/l.baseTemp, -StandardGravity/(l.lapse*AirGasConstant))
}

// isa returns temperature (K) and pressure (Pa) at a geometric height above
// sea level.
func isa(height float64) (float64, float64) {
	h := geopotentialRadius * height / (geopotentialRadius + height)
	if h > isaUpperLimit {
		h = isaUpperLimit
	}
	if h < -2000 {
		h = -2000
	}
	layer := isaLayers[0]
	for _, l := range isaLayers {
		if h >= l.base {
			layer = l
		}
	}
	return isaStep(layer, h-layer.base)
}

// atmosphere is a set of profiles keyed by height above sea level.
type atmosphere struct {
	pressure    *Function
	temperature *Function
	windX       *Function
	windY       *Function
	maxHeight   float64
}

const heightInput = "Height Above Sea Level (m)"

func standardAtmosphere() atmosphere {
	return atmosphere{
		pressure:    NewCallable(func(h float64) float64 { _, p := isa(h); return p }, heightInput, "Pressure (Pa)"),
		temperature: NewCallable(func(h float64) float64 { t, _ := isa(h); return t }, heightInput, "Temperature (K)"),
		windX:       Constant(0, heightInput, "Wind Velocity X (m/s)"),
		windY:       Constant(0, heightInput, "Wind Velocity Y (m/s)"),
		maxHeight:   80000,
	}
}

// parseWyomingSounding reads the TEXT:LIST output of the University of
// Wyoming upper-air archive.
func parseWyomingSounding(r io.Reader) (atmosphere, error) {
	scanner := bufio.NewScanner(r)
	dashes := 0
	var pres, temp, windX, windY [][2]float64
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-----") {
			dashes++
			continue
		}
		if dashes < 2 {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "Station") {
			if len(pres) > 0 {
				break
			}
			continue
		}
		cols := fixedColumns(line, 7, 11)
		p, okP := parseField(cols[0])
		h, okH := parseField(cols[1])
		t, okT := parseField(cols[2])
		if !okP || !okH {
			continue
		}
		pres = append(pres, [2]float64{h, p * 100})
		if okT {
			temp = append(temp, [2]float64{h, t + 273.15})
		}
		dir, okD := parseField(cols[6])
		spd, okS := parseField(cols[7])
		if okD && okS {
			s := spd * knotsToMetres
			rad := dir * math.Pi / 180
			// direction is where the wind blows from
			windX = append(windX, [2]float64{h, -s * math.Sin(rad)})
			windY = append(windY, [2]float64{h, -s * math.Cos(rad)})
		}
	}
	if err := scanner.Err(); err != nil {
		return atmosphere{}, fmt.Errorf("%w: %v", ErrSoundingFormat, err)
	}
	if len(pres) < 2 || len(temp) < 2 {
		return atmosphere{}, fmt.Errorf("%w: fewer than two complete levels", ErrSoundingFormat)
	}
	if len(windX) == 0 {
		windX = [][2]float64{{0, 0}}
		windY = [][2]float64{{0, 0}}
	}

	build := func(points [][2]float64, output string) (*Function, error) {
		return NewFunction(points, heightInput, output, InterpLinear, ExtrapConstant)
	}
	var (
		atm atmosphere
		err error
	)
	if atm.pressure, err = build(pres, "Pressure (Pa)"); err != nil {
		return atmosphere{}, err
	}
	if atm.temperature, err = build(temp, "Temperature (K)"); err != nil {
		return atmosphere{}, err
	}
	if atm.windX, err = build(windX, "Wind Velocity X (m/s)"); err != nil {
		return atmosphere{}, err
	}
	if atm.windY, err = build(windY, "Wind Velocity Y (m/s)"); err != nil {
		return atmosphere{}, err
	}
	_, atm.maxHeight, _ = atm.pressure.Domain()
	return atm, nil
}

func fixedColumns(line string, width, count int) []string {
	cols := make([]string, count)
	for i := 0; i < count; i++ {
		start := i * width
		if start >= len(line) {
			break
		}
		end := start + width
		if end > len(line) {
			end = len(line)
		}
		cols[i] = strings.TrimSpace(line[start:end])
	}
	return cols
}

func parseField(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
