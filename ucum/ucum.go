// Copyright 2025 The octofhir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ucum provides UCUM (Unified Code for Units of Measure) support for
// quantity arithmetic and comparison.
package ucum

import (
	"fmt"
	"strings"
	"sync"
)

// OneUnit is the dimensionless unit, often the result of dividing
// quantities with the same unit.
const OneUnit = "1"

// cqlToUCUMDateUnits maps CQL temporal keyword units to their UCUM
// equivalents.
var cqlToUCUMDateUnits = map[string]string{
	"years": "a_g", "year": "a_g",
	"months": "mo_g", "month": "mo_g",
	"weeks": "wk", "week": "wk",
	"days": "d", "day": "d",
	"hours": "h", "hour": "h",
	"minutes": "min", "minute": "min",
	"seconds": "s", "second": "s",
	"milliseconds": "ms", "millisecond": "ms",
}

// ucumToCQLDateUnits maps UCUM date units back to CQL keyword units.
var ucumToCQLDateUnits = map[string]string{
	"a": "year", "a_j": "year", "a_g": "year",
	"mo": "month", "mo_j": "month", "mo_g": "month",
	"wk": "week", "d": "day", "h": "hour",
	"min": "minute", "s": "second", "ms": "millisecond",
}

// unitFactors holds conversion factors from each base unit to its derived
// units: derived = base * factor.
var unitFactors = map[string]map[string]float64{
	// Length units (base: meter).
	"m": {
		"cm": 100, "mm": 1000, "km": 0.001,
		"in": 39.3701, "ft": 3.28084, "yd": 1.09361, "mi": 0.000621371,
	},
	// Mass units (base: gram).
	"g": {
		"mg": 1000, "ug": 1e6, "ng": 1e9, "kg": 0.001,
		"lb": 0.00220462, "[lb_av]": 0.00220462, "oz": 0.03527396, "[oz_av]": 0.03527396,
	},
	// Volume units (base: liter).
	"L": {
		"mL": 1000, "dL": 10, "cL": 100, "uL": 1e6, "kL": 0.001,
		"gal": 0.264172, "qt": 1.05669, "pt": 2.11338, "[foz_us]": 33.814,
	},
	// Time units (base: second).
	"s": {
		"min": 1 / 60.0, "h": 1 / 3600.0, "d": 1 / 86400.0,
		"wk": 1 / 604800.0, "mo_g": 1 / 2629800.0, "a_g": 1 / 31557600.0,
		"ms": 1000,
	},
}

var validityCache = struct {
	sync.RWMutex
	cache map[string]bool
}{cache: make(map[string]bool)}

// Normalize canonicalizes a unit string: the empty unit becomes "1" and CQL
// temporal keywords become their UCUM codes.
func Normalize(unit string) string {
	if unit == "" {
		return OneUnit
	}
	if u, ok := cqlToUCUMDateUnits[unit]; ok {
		return u
	}
	return unit
}

// DateUnit returns the CQL temporal keyword for a unit, if it is one.
func DateUnit(unit string) (string, bool) {
	if _, ok := cqlToUCUMDateUnits[unit]; ok {
		return singular(unit), true
	}
	cql, ok := ucumToCQLDateUnits[unit]
	return cql, ok
}

func singular(unit string) string {
	if strings.HasSuffix(unit, "s") && unit != "ms" {
		if _, ok := cqlToUCUMDateUnits[unit[:len(unit)-1]]; ok {
			return unit[:len(unit)-1]
		}
	}
	return unit
}

// CheckUnit validates a unit string, allowing empty and CQL temporal units
// per the flags. The second return is a human readable reason on failure.
func CheckUnit(unit string, allowEmptyUnits, allowCQLDateUnits bool) (bool, string) {
	if unit == "" {
		if allowEmptyUnits {
			return true, ""
		}
		return false, "empty unit is not allowed"
	}
	if _, isDateUnit := cqlToUCUMDateUnits[unit]; isDateUnit {
		if allowCQLDateUnits {
			return true, ""
		}
		return false, fmt.Sprintf("CQL temporal unit %q is not allowed here", unit)
	}
	unit = Normalize(unit)

	validityCache.RLock()
	valid, found := validityCache.cache[unit]
	validityCache.RUnlock()
	if !found {
		valid = validSyntax(unit)
		validityCache.Lock()
		validityCache.cache[unit] = valid
		validityCache.Unlock()
	}
	if !valid {
		return false, fmt.Sprintf("invalid UCUM unit: %q", unit)
	}
	return true, ""
}

// Convert converts a value between compatible units. An error means the
// units have no conversion path.
func Convert(val float64, fromUnit, toUnit string) (float64, error) {
	fromUnit, toUnit = Normalize(fromUnit), Normalize(toUnit)
	if fromUnit == toUnit {
		return val, nil
	}
	if factor, ok := conversionFactor(fromUnit, toUnit); ok {
		return val * factor, nil
	}
	return 0, fmt.Errorf("cannot convert from %q to %q", fromUnit, toUnit)
}

// Convertible reports whether two units have a conversion path.
func Convertible(fromUnit, toUnit string) bool {
	fromUnit, toUnit = Normalize(fromUnit), Normalize(toUnit)
	if fromUnit == toUnit {
		return true
	}
	_, ok := conversionFactor(fromUnit, toUnit)
	return ok
}

// Product returns the unit of a quantity multiplication.
func Product(unit1, unit2 string) string {
	unit1, unit2 = Normalize(unit1), Normalize(unit2)
	if unit1 == OneUnit {
		return unit2
	}
	if unit2 == OneUnit {
		return unit1
	}
	if unit1 == unit2 {
		return unit1 + "2"
	}
	return unit1 + "." + unit2
}

// Quotient returns the unit of a quantity division. Equal units cancel.
func Quotient(unit1, unit2 string) string {
	unit1, unit2 = Normalize(unit1), Normalize(unit2)
	if unit1 == unit2 {
		return OneUnit
	}
	if unit2 == OneUnit {
		return unit1
	}
	return unit1 + "/" + unit2
}

func conversionFactor(fromUnit, toUnit string) (float64, bool) {
	for baseUnit, conversions := range unitFactors {
		if fromUnit == baseUnit {
			if factor, ok := conversions[toUnit]; ok {
				return factor, true
			}
		}
		if toUnit == baseUnit {
			if factor, ok := conversions[fromUnit]; ok {
				return 1.0 / factor, true
			}
		}
		fromFactor, fromOK := conversions[fromUnit]
		toFactor, toOK := conversions[toUnit]
		if fromOK && toOK {
			// Convert through the base unit.
			return toFactor / fromFactor, true
		}
	}
	return 0, false
}

// validSyntax is a pragmatic UCUM syntax check over the units the tables
// know plus dotted products, slash quotients and numeric exponents.
func validSyntax(unit string) bool {
	if unit == "" || unit == OneUnit {
		return true
	}
	for baseUnit, factors := range unitFactors {
		if unit == baseUnit {
			return true
		}
		if _, ok := factors[unit]; ok {
			return true
		}
	}
	if _, ok := ucumToCQLDateUnits[unit]; ok {
		return true
	}
	if strings.Contains(unit, "/") {
		parts := strings.Split(unit, "/")
		if len(parts) == 2 {
			return validSyntax(parts[0]) && validSyntax(parts[1])
		}
		return false
	}
	if strings.Contains(unit, ".") {
		for _, part := range strings.Split(unit, ".") {
			if !validSyntax(part) {
				return false
			}
		}
		return true
	}
	if len(unit) > 1 {
		last := unit[len(unit)-1]
		if last >= '0' && last <= '9' {
			return validSyntax(unit[:len(unit)-1])
		}
	}
	// Unknown simple units are accepted; a full UCUM registry would reject
	// here.
	return true
}
