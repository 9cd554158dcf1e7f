package emergency

// Category is one class of life-threatening presentation.
type Category struct {
	Name     string
	Label    string
	Triggers []string
}

// Table is the ordered category list the detector scans. Category order
// fixes the order of reported categories; trigger order decides which phrase
// is reported when several match.
type Table struct {
	categories []Category
}

// NewTable copies categories into an immutable table.
func NewTable(categories []Category) Table {
	out := make([]Category, len(categories))
	for i, c := range categories {
		triggers := make([]string, len(c.Triggers))
		copy(triggers, c.Triggers)
		out[i] = Category{Name: c.Name, Label: c.Label, Triggers: triggers}
	}
	return Table{categories: out}
}

// Categories returns a copy of the table contents.
func (t Table) Categories() []Category {
	return NewTable(t.categories).categories
}

// DefaultTable is the built-in trigger list.
func DefaultTable() Table {
	return NewTable([]Category{
		{
			Name:  "cardiac",
			Label: "**CARDIAC EMERGENCY** - Possible heart attack",
			Triggers: []string{
				"chest pain", "chest pressure", "crushing chest", "heart attack",
				"chest tightness", "pain radiating to arm", "pain in left arm",
				"jaw pain with chest", "severe chest discomfort",
			},
		},
		{
			Name:  "respiratory",
			Label: "**RESPIRATORY EMERGENCY** - Severe breathing difficulty",
			Triggers: []string{
				"can't breathe", "cannot breathe", "difficulty breathing",
				"shortness of breath severe", "gasping for air", "choking",
				"turning blue", "blue lips", "severe breathing difficulty",
			},
		},
		{
			Name:  "neurological",
			Label: "**NEUROLOGICAL EMERGENCY** - Possible stroke or brain injury",
			Triggers: []string{
				"stroke", "face drooping", "arm weakness", "speech difficulty",
				"sudden confusion", "severe headache worst ever", "thunderclap headache",
				"loss of consciousness", "passed out", "seizure", "convulsion",
				"sudden weakness", "sudden numbness", "can't move arm", "can't move leg",
			},
		},
		{
			Name:  "bleeding",
			Label: "**SEVERE BLEEDING** - Immediate medical attention needed",
			Triggers: []string{
				"severe bleeding", "heavy bleeding", "uncontrolled bleeding",
				"bleeding won't stop", "coughing up blood", "vomiting blood",
				"blood in vomit", "blood in stool black",
			},
		},
		{
			Name:  "trauma",
			Label: "**MAJOR TRAUMA** - Serious injury",
			Triggers: []string{
				"severe injury", "head injury", "major trauma", "car accident",
				"fell from height", "broken bone protruding", "severe burn",
			},
		},
		{
			Name:  "severe_pain",
			Label: "**SEVERE PAIN** - Immediate evaluation needed",
			Triggers: []string{
				"worst pain of my life", "worst headache ever", "10/10 pain",
				"excruciating pain", "unbearable pain", "severe abdominal pain sudden",
			},
		},
		{
			Name:  "altered_mental",
			Label: "**ALTERED CONSCIOUSNESS** - Immediate medical attention",
			Triggers: []string{
				"very confused", "disoriented", "hallucinating", "can't wake up",
				"unresponsive", "not making sense",
			},
		},
		{
			Name:  "allergic",
			Label: "**SEVERE ALLERGIC REACTION** - Possible anaphylaxis",
			Triggers: []string{
				"throat swelling", "tongue swelling", "severe allergic reaction",
				"anaphylaxis", "epipen needed", "allergic reaction severe",
				"face swelling rapidly", "hives with breathing difficulty",
			},
		},
	})
}
