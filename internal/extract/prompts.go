package extract

import "github.com/atelierflow/formscan/constants"

// Primary extraction prompts, one per document type. Schemas are spelled out
// inline because the model must return the exact key set, accents included.

const rebutPrompt = "ROLE: Expert transcription for French 'Formulaire de déclaration Rebuts'.\n" +
	"GOAL: Output ONLY valid JSON with keys: document_type, header, items, notes.\n" +
	"RULES: Never invent text; blank/illegible => null. Do NOT autofill total_scrapped.\n" +
	"One JSON row per physical handwritten table row; skip fully blank lines; keep order.\n" +
	"HEADER constraint: 'equipe' MUST be Roman numeral (I,II,III,IV,V,VI,VII,VIII,IX,X). If Arabic digit 1-10 is written convert to Roman. If any other letters (Team A, QA, L, 2A etc) -> null. Only characters I,V,X allowed.\n" +
	"SCHEMA:{\n  \"document_type\": \"Rebut\",\n  \"header\": {\"jap\":null,\"ligne\":null,\"of_number\":null,\"mat_number\":null,\"equipe\":null,\"date\":null,\"visa\":null},\n  \"items\": [{\"reference\":null,\"reference_fjk\":null,\"designation\":null,\"quantity\":null,\"unit\":null,\"type\":null,\"total_scrapped\":null}],\n  \"notes\": []}\n" +
	"Return ONLY that JSON object."

const kosuPrompt = "ROLE: Expert form transcription specialist for French 'Suivi Productivité - Règles Escalade' forms.\n" +
	"CRITICAL MISSION: Extract EXACTLY what is handwritten in EACH field location by looking at FIELD LABELS on the form. NO interpretation, NO copying between fields.\n" +
	"SCHEMA EXACT: {\n" +
	"  \"document_type\": \"Kosu\",\n" +
	"  \"Titre du document\": null,\n" +
	"  \"Référence du document\": null,\n" +
	"  \"Date du document\": null,\n" +
	"  \"Equipe\": null,\n" +
	"  \"Nom Ligne\": null,\n" +
	"  \"Code ligne\": null,\n" +
	"  \"Jour\": null,\n" +
	"  \"Semaine\": null,\n" +
	"  \"Numéro OF\": null,\n" +
	"  \"Ref PF\": null,\n" +
	"  \"Suivi horaire\": [ { \"Heure\": null, \"Nombre d'Opérateurs\": null, \"Objectif Qté / H\": null, \"Quantité pièces bonnes\": null, \"Productivité\": null } ],\n" +
	"  \"Total / Equipe\": { \"Heures Dépensées\": null, \"Objectif Qté / EQ\": null, \"Qté pièces Bonnes / EQ\": null, \"Productivité / EQ\": null },\n" +
	"  \"Règles d'escalade\": [ { \"Productivité\": null, \"Personne à informer\": null } ],\n" +
	"  \"remark\": null\n" +
	"}\n" +
	"ABSOLUTE RULES (ZERO TOLERANCE FOR VIOLATIONS):\n" +
	"1. LOOK AT FORM FIELD LABELS - Find 'Nom Ligne' label and extract value from THAT box, find 'Code ligne' label and extract from THAT box\n" +
	"2. 'Nom Ligne' field = ALWAYS descriptive TEXT/NAME (like 'A41S', 'Production A', 'Montage', etc.) - CAN contain letters+numbers\n" +
	"3. 'Code ligne' field = ALWAYS PURE NUMERIC (like '7', '15', '564', etc.) - ONLY digits, NO letters\n" +
	"4. THESE ARE TWO DIFFERENT PHYSICAL BOXES on the form - extract from the correct box for each field\n" +
	"5. If you see ONLY numbers in the 'Nom Ligne' box, that's an ERROR - check again, or mark as null\n" +
	"6. If you see letters in the 'Code ligne' box, extract ONLY the numbers, or mark as null if no numbers\n" +
	"7. Copy EXACTLY what you see handwritten in EACH specific field location\n" +
	"8. Empty/illegible = null. NEVER guess or copy from other fields\n" +
	"9. DOUBLE-CHECK: Nom Ligne and Code ligne MUST have DIFFERENT values, DIFFERENT types (text vs number)\n" +
	"Return ONLY the JSON object."

const nptPrompt = "Extract NPT form -> JSON only: {\"document_type\":\"NPT\",\"header\":{\"uap\":null,\"date\":null,\"equipe\":null}," +
	"\"downtime_events\":[{\"codes_ligne\":null,\"ref_pf\":null,\"designation\":null,\"mod_impacte\":null,\"npt_minutes\":null,\"heure_debut_d_arret\":null,\"heure_fin_d_arret\":null,\"cause_npt\":null,\"numero_di\":null,\"commentaire\":null,\"validation\":null}]}" +
	" One object per handwritten row; blank->null. Constraints: 'uap' digits only (strip 'UAP', keep 1-3 digits; any letters/punctuation like '0.4' -> null). 'equipe' Roman numeral I..X (convert digit 1-10 to Roman; others -> null)."

const defautsPrompt = "ROLE: Transcribe ONLY handwritten info from 'FORMULAIRE ENREGISTREMENT QUALITE (Défauts POSTE)'. " +
	"OUTPUT: EXACTLY one JSON object – no commentary. BLANK or illegible => null. DO NOT GUESS. " +
	"SCHEMA:{\n  \"document_type\":\"Défauts\",\n  \"entry_header\":{\"uap\":null,\"ligne\":null,\"n_poste\":null,\"operation\":null,\"code_famillier\":null,\"semaine\":null,\"annee\":null,\"mois\":null},\n  \"recorded_defects\":[{\"code\":null,\"day\":null,\"station\":null,\"raw_mark\":null}],\n  \"notes\":[]}\n" +
	"RULES:\n- Only create a recorded_defects entry if a cell has a CLEAR handwritten mark.\n" +
	"- Use day ENUM [Lun,Mar,Mer,Jeu,Ven,Sam]; if unsure -> null.\n" +
	"- Use station ENUM [E1,E2,E3]; if unsure -> null.\n" +
	"- code: copy the handwritten code (letters/numbers/dash) else null.\n" +
	"- raw_mark: keep raw symbol ('X','XX','2X','3','✔'), do NOT aggregate.\n" +
	"- NEVER fabricate rows to complete a pattern.\n" +
	"FILTER: Ignore printed template artifacts or faint shadows."

const defautsVerifyPrompt = "You will verify defect marks. For each entry decide if the raw_mark is a real handwritten mark.\n" +
	"If ambiguous / artifact -> false. Return JSON {\"verified\":[{\"index\":i,\"keep\":true|false}]}."

const defautsRecoveryPrompt = "Find additional handwritten defect marks (code/day/station) NOT in the provided list.\n" +
	"Return JSON {\"additional\":[{\"code\":null,\"day\":null,\"station\":null,\"raw_mark\":null}]}. Only real marks; blank cells -> none."

var primaryPrompts = map[constants.DocType]string{
	constants.Rebut:   rebutPrompt,
	constants.Kosu:    kosuPrompt,
	constants.NPT:     nptPrompt,
	constants.Defauts: defautsPrompt,
}

// Narrow prompts for targeted single-field re-extraction. Fields without an
// entry here are skipped silently.
var fieldPrompts = map[string]string{
	"Equipe":     "Look ONLY at the 'Equipe' field. Extract the exact handwritten value (digit or Roman numeral). Return JSON: {\"Equipe\": \"value_or_null\"}",
	"Nom Ligne":  "Look ONLY at the 'Nom Ligne' field (line name). Extract the exact handwritten TEXT/DESCRIPTION. This MUST be descriptive text/words, NOT numbers. Return JSON: {\"Nom Ligne\": \"text_description_or_null\"}",
	"Code ligne": "Look ONLY at the 'Code ligne' field (line code). Extract ONLY the NUMBERS written there. This MUST be numeric only (like 1, 2, 15, 25). Ignore any text. Return JSON: {\"Code ligne\": \"numbers_only_or_null\"}",
	"uap":        "Look ONLY at the 'UAP' field. Extract only the digits (1-3 digits). Ignore any 'UAP' prefix. Return JSON: {\"uap\": \"digits_only_or_null\"}",
	"jap":        "Look ONLY at the 'JAP' field. Extract only the digits. Return JSON: {\"jap\": \"digits_only_or_null\"}",
}

// headerScopedFields are re-extraction targets that live under the record's
// header mapping rather than at the top level.
var headerScopedFields = map[string]struct{}{
	"uap": {},
	"jap": {},
}
