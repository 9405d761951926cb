package guide

import "strings"

// countryOffsets is standard (winter) time in seconds east of UTC, keyed by the
// upper-case country suffix used in directory ids. Countries spanning several
// zones use the zone of the capital.
var countryOffsets = map[string]int{
	// UTC-10 .. UTC-3
	"US": -5 * 3600, "CA": -5 * 3600, "MX": -6 * 3600, "GT": -6 * 3600,
	"SV": -6 * 3600, "HN": -6 * 3600, "NI": -6 * 3600, "CR": -6 * 3600,
	"PA": -5 * 3600, "CU": -5 * 3600, "JM": -5 * 3600, "HT": -5 * 3600,
	"CO": -5 * 3600, "PE": -5 * 3600, "EC": -5 * 3600,
	"DO": -4 * 3600, "PR": -4 * 3600, "TT": -4 * 3600, "VE": -4 * 3600,
	"BO": -4 * 3600, "PY": -4 * 3600, "CL": -4 * 3600,
	"AR": -3 * 3600, "BR": -3 * 3600, "UY": -3 * 3600,

	// UTC+0
	"UK": 0, "GB": 0, "IE": 0, "PT": 0, "IS": 0, "GH": 0, "SN": 0, "CI": 0,
	"MA": 0, "FO": 0,

	// UTC+1
	"FR": 3600, "DE": 3600, "ES": 3600, "IT": 3600, "NL": 3600, "BE": 3600,
	"LU": 3600, "CH": 3600, "AT": 3600, "DK": 3600, "NO": 3600, "SE": 3600,
	"PL": 3600, "CZ": 3600, "SK": 3600, "HU": 3600, "SI": 3600, "HR": 3600,
	"BA": 3600, "RS": 3600, "ME": 3600, "MK": 3600, "AL": 3600, "MT": 3600,
	"AD": 3600, "MC": 3600, "SM": 3600, "VA": 3600, "LI": 3600, "XK": 3600,
	"DZ": 3600, "TN": 3600, "NG": 3600, "CM": 3600, "AO": 3600, "CD": 3600,

	// UTC+2
	"GR": 2 * 3600, "CY": 2 * 3600, "BG": 2 * 3600, "RO": 2 * 3600,
	"MD": 2 * 3600, "UA": 2 * 3600, "FI": 2 * 3600, "EE": 2 * 3600,
	"LV": 2 * 3600, "LT": 2 * 3600, "IL": 2 * 3600, "PS": 2 * 3600,
	"LB": 2 * 3600, "EG": 2 * 3600, "LY": 2 * 3600, "ZA": 2 * 3600,
	"ZW": 2 * 3600, "ZM": 2 * 3600, "MZ": 2 * 3600, "RW": 2 * 3600,

	// UTC+3 .. UTC+4
	"TR": 3 * 3600, "RU": 3 * 3600, "BY": 3 * 3600, "SA": 3 * 3600,
	"IQ": 3 * 3600, "KW": 3 * 3600, "QA": 3 * 3600, "BH": 3 * 3600,
	"JO": 3 * 3600, "SY": 3 * 3600, "YE": 3 * 3600, "KE": 3 * 3600,
	"ET": 3 * 3600, "TZ": 3 * 3600, "UG": 3 * 3600, "SO": 3 * 3600,
	"IR": 3*3600 + 1800,
	"AE": 4 * 3600, "OM": 4 * 3600, "AZ": 4 * 3600, "GE": 4 * 3600,
	"AM": 4 * 3600, "MU": 4 * 3600,
	"AF": 4*3600 + 1800,

	// UTC+5 .. UTC+7
	"PK": 5 * 3600, "UZ": 5 * 3600, "TJ": 5 * 3600, "MV": 5 * 3600,
	"KZ": 5 * 3600, "TM": 5 * 3600,
	"IN": 5*3600 + 1800, "LK": 5*3600 + 1800,
	"NP": 5*3600 + 2700,
	"BD": 6 * 3600, "KG": 6 * 3600, "BT": 6 * 3600,
	"MM": 6*3600 + 1800,
	"TH": 7 * 3600, "VN": 7 * 3600, "KH": 7 * 3600, "LA": 7 * 3600,
	"ID": 7 * 3600,

	// UTC+8 .. UTC+13
	"CN": 8 * 3600, "HK": 8 * 3600, "MO": 8 * 3600, "TW": 8 * 3600,
	"SG": 8 * 3600, "MY": 8 * 3600, "PH": 8 * 3600, "BN": 8 * 3600,
	"MN": 8 * 3600,
	"JP": 9 * 3600, "KR": 9 * 3600, "KP": 9 * 3600,
	"AU": 10 * 3600, "PG": 10 * 3600,
	"NZ": 12 * 3600, "FJ": 12 * 3600,
}

// CountryOffset returns the standard-time UTC offset in seconds for a country
// code (case-insensitive). Unknown codes return 0.
func CountryOffset(code string) int {
	return countryOffsets[strings.ToUpper(code)]
}
