package resume

// MaxPayloadBytes caps the request body (100 KiB); larger bodies are rejected before parsing.
const MaxPayloadBytes = 100 * 1024

// Resume is the structured résumé, named after JSON Resume (work uses company).
// Lists render in the order the caller sent them and are never reordered.
type Resume struct {
	Basics       Basics        `json:"basics" validate:"required"`
	Work         []Work        `json:"work" validate:"max=50,dive"`
	Education    []Education   `json:"education" validate:"max=20,dive"`
	Skills       []Skill       `json:"skills" validate:"max=50,dive"`
	Languages    []Language    `json:"languages" validate:"max=20,dive"`
	Projects     []Project     `json:"projects" validate:"max=30,dive"`
	Certificates []Certificate `json:"certificates" validate:"max=30,dive"`
	Awards       []Award       `json:"awards" validate:"max=30,dive"`
	Interests    []Interest    `json:"interests" validate:"max=30,dive"`
}

// Basics holds the candidate's contact details.
type Basics struct {
	Name     string    `json:"name" validate:"notblank,max=100"`
	Label    string    `json:"label" validate:"max=100"`
	Email    string    `json:"email" validate:"omitempty,max=254,email"`
	Phone    string    `json:"phone" validate:"omitempty,max=30"`
	URL      string    `json:"url" validate:"omitempty,max=2048,url"`
	Summary  string    `json:"summary" validate:"max=600"`
	Location Location  `json:"location"`
	Profiles []Profile `json:"profiles" validate:"max=10,dive"`
}

type Location struct {
	Address     string `json:"address" validate:"max=200"`
	PostalCode  string `json:"postalCode" validate:"max=20"`
	City        string `json:"city" validate:"max=100"`
	CountryCode string `json:"countryCode" validate:"omitempty,max=3"`
	Region      string `json:"region" validate:"max=100"`
}

type Profile struct {
	Network  string `json:"network" validate:"notblank,max=50"`
	Username string `json:"username" validate:"max=100"`
	URL      string `json:"url" validate:"omitempty,max=2048,url"`
}

// Work is one position held.
type Work struct {
	Company    string   `json:"company" validate:"notblank,max=100"`
	Position   string   `json:"position" validate:"max=100"`
	URL        string   `json:"url" validate:"omitempty,max=2048,url"`
	StartDate  string   `json:"startDate" validate:"omitempty,resumedate"`
	EndDate    string   `json:"endDate" validate:"omitempty,resumedate"`
	Summary    string   `json:"summary" validate:"max=1000"`
	Highlights []string `json:"highlights" validate:"max=30,dive,max=300"`
}

type Education struct {
	Institution string   `json:"institution" validate:"notblank,max=150"`
	Area        string   `json:"area" validate:"max=100"`
	StudyType   string   `json:"studyType" validate:"max=100"`
	StartDate   string   `json:"startDate" validate:"omitempty,resumedate"`
	EndDate     string   `json:"endDate" validate:"omitempty,resumedate"`
	Score       string   `json:"score" validate:"max=20"`
	Courses     []string `json:"courses" validate:"max=30,dive,max=150"`
}

type Skill struct {
	Name     string   `json:"name" validate:"notblank,max=100"`
	Level    string   `json:"level" validate:"max=50"`
	Keywords []string `json:"keywords" validate:"max=30,dive,max=50"`
}

type Language struct {
	Language string `json:"language" validate:"notblank,max=50"`
	Fluency  string `json:"fluency" validate:"max=50"`
}

type Project struct {
	Name        string   `json:"name" validate:"notblank,max=150"`
	Description string   `json:"description" validate:"max=1000"`
	URL         string   `json:"url" validate:"omitempty,max=2048,url"`
	StartDate   string   `json:"startDate" validate:"omitempty,resumedate"`
	EndDate     string   `json:"endDate" validate:"omitempty,resumedate"`
	Highlights  []string `json:"highlights" validate:"max=30,dive,max=300"`
}

type Certificate struct {
	Name   string `json:"name" validate:"notblank,max=150"`
	Date   string `json:"date" validate:"omitempty,resumedate"`
	Issuer string `json:"issuer" validate:"max=150"`
	URL    string `json:"url" validate:"omitempty,max=2048,url"`
}

type Award struct {
	Title   string `json:"title" validate:"notblank,max=150"`
	Date    string `json:"date" validate:"omitempty,resumedate"`
	Awarder string `json:"awarder" validate:"max=150"`
	Summary string `json:"summary" validate:"max=600"`
}

type Interest struct {
	Name     string   `json:"name" validate:"notblank,max=100"`
	Keywords []string `json:"keywords" validate:"max=30,dive,max=50"`
}

// period is implemented by entries that carry a start/end date pair.
type period interface {
	dates() (start, end string)
}

func (w Work) dates() (string, string)      { return w.StartDate, w.EndDate }
func (e Education) dates() (string, string) { return e.StartDate, e.EndDate }
func (p Project) dates() (string, string)   { return p.StartDate, p.EndDate }
