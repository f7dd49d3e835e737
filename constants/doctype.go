package constants

import "strings"

// DocType identifies one of the supported production-tracking form types.
type DocType string

const (
	Rebut   DocType = "Rebut"
	NPT     DocType = "NPT"
	Kosu    DocType = "Kosu"
	Defauts DocType = "Défauts"
)

// DocTypes holds all supported document types.
var DocTypes = []DocType{Rebut, NPT, Kosu, Defauts}

// ParseDocType canonicalizes a document-type selector. Matching is
// case-insensitive and accepts the ASCII-folded "defauts" alias.
func ParseDocType(s string) (DocType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rebut":
		return Rebut, true
	case "npt":
		return NPT, true
	case "kosu":
		return Kosu, true
	case "défauts", "defauts":
		return Defauts, true
	}
	return "", false
}

// Days of week accepted on Défauts forms.
var DefautsDays = []string{"Lun", "Mar", "Mer", "Jeu", "Ven", "Sam"}

// Stations accepted on Défauts forms.
var DefautsStations = []string{"E1", "E2", "E3"}

func IsDefautsDay(s string) bool {
	for _, d := range DefautsDays {
		if s == d {
			return true
		}
	}
	return false
}

func IsDefautsStation(s string) bool {
	for _, st := range DefautsStations {
		if s == st {
			return true
		}
	}
	return false
}
