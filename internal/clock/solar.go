package clock

import (
	"math"
	"time"
)

// SolarFields holds the spec §4.5 solar zone's fields: altitude/azimuth
// (horizontal coordinates at the configured observer location) and
// right-ascension/declination (equatorial coordinates, location
// independent). A low-precision solar position algorithm (Meeus-style
// mean-element approximation), adequate for a hobby automation daemon's
// "is it light out" and "what's the sun's azimuth" logic and well within
// the spec's non-real-time accuracy needs.
type SolarFields struct {
	Altitude       float64 // degrees above horizon
	Azimuth        float64 // degrees clockwise from north
	RightAscension float64 // degrees
	Declination    float64 // degrees
}

// Solar computes SolarFields for instant t at the given latitude/
// longitude (degrees, west negative).
func Solar(t time.Time, latitude, longitude float64) SolarFields {
	jd := julianDay(t)
	jc := (jd - 2451545.0) / 36525.0

	meanLong := normalizeDegrees(280.46646 + jc*(36000.76983+jc*0.0003032))
	meanAnom := normalizeDegrees(357.52911 + jc*(35999.05029-jc*0.0001537))
	eccent := 0.016708634 - jc*(0.000042037+jc*0.0000001267)

	meanAnomRad := deg2rad(meanAnom)
	center := math.Sin(meanAnomRad)*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(2*meanAnomRad)*(0.019993-0.000101*jc) +
		math.Sin(3*meanAnomRad)*0.000289

	trueLong := meanLong + center
	omega := 125.04 - 1934.136*jc
	apparentLong := trueLong - 0.00569 - 0.00478*math.Sin(deg2rad(omega))

	meanObliq := 23.0 + (26.0+((21.448-jc*(46.815+jc*(0.00059-jc*0.001813)))/60.0)/60.0)
	obliqCorr := meanObliq + 0.00256*math.Cos(deg2rad(omega))

	apparentLongRad := deg2rad(apparentLong)
	obliqCorrRad := deg2rad(obliqCorr)

	rightAscension := rad2deg(math.Atan2(
		math.Cos(obliqCorrRad)*math.Sin(apparentLongRad),
		math.Cos(apparentLongRad),
	))
	rightAscension = normalizeDegrees(rightAscension)

	declination := rad2deg(math.Asin(math.Sin(obliqCorrRad) * math.Sin(apparentLongRad)))

	_ = eccent // retained for documentation of the full mean-element derivation

	gmst := greenwichMeanSiderealTime(jd)
	hourAngle := normalizeDegrees(gmst + longitude - rightAscension)
	if hourAngle > 180 {
		hourAngle -= 360
	}

	latRad := deg2rad(latitude)
	decRad := deg2rad(declination)
	haRad := deg2rad(hourAngle)

	altitude := rad2deg(math.Asin(
		math.Sin(latRad)*math.Sin(decRad) + math.Cos(latRad)*math.Cos(decRad)*math.Cos(haRad),
	))

	azimuthDenom := math.Cos(latRad)*math.Sin(deg2rad(90-altitude))
	var azimuth float64
	if math.Abs(azimuthDenom) > 1e-9 {
		cosAz := (math.Sin(decRad) - math.Sin(latRad)*math.Sin(deg2rad(altitude))) / azimuthDenom
		cosAz = clamp(cosAz, -1, 1)
		azimuth = rad2deg(math.Acos(cosAz))
		if hourAngle > 0 {
			azimuth = 360 - azimuth
		}
	}

	return SolarFields{
		Altitude:       altitude,
		Azimuth:        azimuth,
		RightAscension: rightAscension,
		Declination:    declination,
	}
}

func julianDay(t time.Time) float64 {
	u := t.UTC()
	return float64(u.Unix())/86400.0 + 2440587.5
}

func greenwichMeanSiderealTime(jd float64) float64 {
	jc := (jd - 2451545.0) / 36525.0
	gmst := 280.46061837 + 360.98564736629*(jd-2451545.0) + jc*jc*(0.000387933-jc/38710000.0)
	return normalizeDegrees(gmst)
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
