package classifier

// categories is the model's output order. Index i of the output row is the
// score for categories[i].
var categories = [...]string{
	"Theft",
	"Reports/Agreement",
	"Accident",
	"Debt / Unpaid Wages Report",
	"Defamation Complaint",
	"Assault/Harassment",
	"Property Damage/Incident",
	"Animal Incident",
	"Verbal Abuse and Threats",
	"Alarm and Scandal",
	"Lost Items",
	"Scam/Fraud",
	"Drugs Addiction",
	"Missing Person",
	"Others",
}

// CategoryCount is the number of labels the model scores.
const CategoryCount = len(categories)

// Categories returns the ordered label list.
func Categories() []string {
	return append([]string(nil), categories[:]...)
}

// CategoryIndex returns the position of name, or -1 when it is not a label.
func CategoryIndex(name string) int {
	for i, c := range categories {
		if c == name {
			return i
		}
	}
	return -1
}
