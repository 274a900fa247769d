package features

// incidentTypeNames mirrors the classifier label order, lowercased.
// Matching is first-match over this order; see incidentTypeSlot.
var incidentTypeNames = [IncidentTypeWidth]string{
	"theft",
	"reports/agreement",
	"accident",
	"debt / unpaid wages report",
	"defamation complaint",
	"assault/harassment",
	"property damage/incident",
	"animal incident",
	"verbal abuse and threats",
	"alarm and scandal",
	"lost items",
	"scam/fraud",
	"drugs addiction",
	"missing person",
	"others",
}

// keywordTerms holds the crime keyword band in slot order. "hospital" appears
// twice (location and emergency groups); both slots are kept so the trained
// model sees the layout it was fitted on.
var keywordTerms = [KeywordWidth]string{
	// violence
	"nakaw", "ninakaw", "theft", "steal", "stolen", "rob", "robbery",
	"assault", "attack", "hit", "punch", "violence", "fight", "beat",

	// drugs
	"drugs", "droga", "shabu", "marijuana", "cocaine", "addict", "pusher",
	"drug dealer", "substance", "illegal drugs", "narcotic",

	// harassment
	"harass", "harassment", "abuse", "threat", "threaten", "intimidate",
	"bully", "verbal abuse", "sexual harassment", "catcall",

	// fraud
	"scam", "fraud", "fake", "counterfeit", "forgery", "swindle",
	"deceive", "cheat", "embezzle", "identity theft",

	// missing person
	"missing", "lost person", "disappear", "vanish", "abduct", "kidnap",
	"runaway", "last seen", "whereabouts unknown",

	// property damage
	"damage", "vandalism", "destroy", "break", "smash", "graffiti",
	"fire", "arson", "explosion", "sabotage",

	// location
	"street", "kalye", "road", "highway", "bridge", "park", "school",
	"hospital", "church", "market", "mall", "home", "house", "barangay",

	// time
	"morning", "afternoon", "evening", "night", "dawn", "midnight",
	"today", "yesterday", "last week", "umaga", "gabi", "tanghali",

	// emergency
	"emergency", "urgent", "help", "police", "ambulance", "fire truck",
	"rescue", "hospital", "clinic", "emergency room",
}

// tagalogTerms are Tagalog function and content words used as a language marker.
var tagalogTerms = [LanguageWidth]string{
	"ako", "ikaw", "siya", "kami", "kayo", "sila", "ang", "ng", "sa", "si",
	"mga", "ay", "at", "na", "pa", "po", "opo", "hindi", "oo", "wala",
	"may", "meron", "kung", "kapag", "para", "dahil", "kasi", "pero",
	"nakita", "narinig", "nangyari", "ginawa", "sinabi", "pumunta",
	"dumating", "umalis", "kumuha", "binigay", "tinanong", "sumagot",
	"pera", "kotse", "bahay", "tao", "bata", "lalaki", "babae", "matanda",
	"gabi", "umaga",
}

// severityTerms occupy the first slots of the severity band.
var severityTerms = []string{"urgent", "emergency", "serious", "critical", "help", "asap"}

// KeywordTerms returns the keyword band vocabulary in slot order.
func KeywordTerms() []string { return append([]string(nil), keywordTerms[:]...) }

// TagalogTerms returns the language band vocabulary in slot order.
func TagalogTerms() []string { return append([]string(nil), tagalogTerms[:]...) }

// SeverityTerms returns the severity vocabulary in slot order.
func SeverityTerms() []string { return append([]string(nil), severityTerms...) }
