// Package sun computes day/night state from solar ephemeris data.
//
// It backs the sun_api photoperiod source: given a timestamp and
// coordinates, Service reports whether the sun is up, optionally
// widened to civil twilight by a fixed offset.
package sun
