package models

// Profile vocabularies. The gateway renders these as keyboards; values are
// stored verbatim, so filter equality is exact string match.

var Languages = []string{"en", "ar", "hi", "id"}

var Genders = []string{"male", "female"}

var Regions = []string{
	"Africa",
	"Europe",
	"Asia",
	"North America",
	"South America",
	"Oceania",
	"Antarctica",
}

var Countries = []string{
	"Indonesia",
	"Malaysia",
	"India",
	"Russia",
	"Arab",
	"USA",
	"Iran",
	"Nigeria",
	"Brazil",
	"Turkey",
}

// ValidLanguage reports whether the code is a supported locale.
func ValidLanguage(code string) bool { return contains(Languages, code) }

// ValidGender reports whether the value is a known gender option.
func ValidGender(v string) bool { return contains(Genders, v) }

// ValidRegion reports whether the value is one of the continental buckets.
func ValidRegion(v string) bool { return contains(Regions, v) }

// ValidCountry reports whether the value is a known country option.
func ValidCountry(v string) bool { return contains(Countries, v) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
