package extract

import "github.com/atelierflow/formscan/internal/normalize"

// normalizeHeaderIdentity canonicalizes the zone and team fields of records
// that carry a header mapping (Rebut, NPT). Alias keys the model sometimes
// emits ("UAP", "team", ...) are folded into the canonical key; values that
// fail normalization become null rather than leaking through unvalidated.
func normalizeHeaderIdentity(rec map[string]any) map[string]any {
	header, ok := rec["header"].(map[string]any)
	if !ok {
		return rec
	}
	for _, key := range []string{"uap", "UAP"} {
		v, present := header[key]
		if !present {
			continue
		}
		if u, ok := normalize.UAP(v); ok {
			header["uap"] = u
		} else {
			header["uap"] = nil
		}
		if key != "uap" {
			delete(header, key)
		}
		break
	}
	for _, key := range []string{"equipe", "team", "EQUIPE", "TEAM"} {
		v, present := header[key]
		if !present {
			continue
		}
		if r, ok := normalize.Equipe(v); ok {
			header["equipe"] = r
		} else {
			header["equipe"] = nil
		}
		if key != "equipe" {
			delete(header, key)
		}
		break
	}
	return rec
}
