// Package ctgov fragt die ClinicalTrials.gov API v2 ab und bildet Studien auf kanonische Datensätze ab.
package ctgov

// StudiesResponse ist eine Ergebnisseite von /studies.
type StudiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

// Study enthält nur die Module, die wir auswerten.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

type ProtocolSection struct {
	IdentificationModule struct {
		NCTID         string `json:"nctId"`
		OfficialTitle string `json:"officialTitle"`
		BriefTitle    string `json:"briefTitle"`
	} `json:"identificationModule"`

	StatusModule struct {
		StartDateStruct          *DateStruct `json:"startDateStruct"`
		CompletionDateStruct     *DateStruct `json:"completionDateStruct"`
		StudyFirstPostDateStruct *DateStruct `json:"studyFirstPostDateStruct"`
		LastUpdatePostDateStruct *DateStruct `json:"lastUpdatePostDateStruct"`
	} `json:"statusModule"`

	DescriptionModule struct {
		BriefSummary        string `json:"briefSummary"`
		DetailedDescription string `json:"detailedDescription"`
	} `json:"descriptionModule"`

	DesignModule struct {
		Phases []string `json:"phases"`
	} `json:"designModule"`

	ConditionsModule struct {
		Conditions []string `json:"conditions"`
	} `json:"conditionsModule"`

	SponsorCollaboratorsModule struct {
		LeadSponsor   *Sponsor  `json:"leadSponsor"`
		Collaborators []Sponsor `json:"collaborators"`
	} `json:"sponsorCollaboratorsModule"`
}

// DateStruct trägt Daten als "2024", "2024-03" oder "2024-03-05".
type DateStruct struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

type Sponsor struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

func (d *DateStruct) value() string {
	if d == nil {
		return ""
	}
	return d.Date
}
