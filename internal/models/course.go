package models

// Locale is a supported content language.
type Locale string

const (
	LocaleEnglish    Locale = "en"
	LocaleArabic     Locale = "ar"
	LocaleIndonesian Locale = "id"
)

// CoursePlan is a selectable duration option of a course.
type CoursePlan struct {
	ID       string `yaml:"id" json:"id"`
	Duration string `yaml:"duration" json:"duration"`
	Hours    string `yaml:"hours" json:"hours"`
	Price    string `yaml:"price" json:"price"`
}

// Course is a catalog entry in one locale.
type Course struct {
	ID               string       `yaml:"id" json:"id"`
	Title            string       `yaml:"title" json:"title"`
	ArabicTitle      string       `yaml:"arabicTitle" json:"arabicTitle"`
	Level            string       `yaml:"level" json:"level"`
	Mode             string       `yaml:"mode" json:"mode"`
	ShortDescription string       `yaml:"shortDescription" json:"shortDescription"`
	FullDescription  string       `yaml:"fullDescription" json:"fullDescription"`
	Duration         string       `yaml:"duration" json:"duration"`
	Hours            string       `yaml:"hours" json:"hours"`
	Price            string       `yaml:"price" json:"price"`
	Suitability      string       `yaml:"suitability" json:"suitability"`
	Schedule         string       `yaml:"schedule" json:"schedule"`
	Capacity         int          `yaml:"capacity" json:"capacity"`
	Inclusions       []string     `yaml:"inclusions" json:"inclusions"`
	Features         []string     `yaml:"features" json:"features"`
	Plans            []CoursePlan `yaml:"plans" json:"plans,omitempty"`
}

// HasPlans reports whether the course requires choosing a plan.
func (c *Course) HasPlans() bool {
	return c != nil && len(c.Plans) > 0
}

// Plan returns the plan with the given normalized id.
func (c *Course) Plan(id string) (*CoursePlan, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Plans {
		if c.Plans[i].ID == id {
			return &c.Plans[i], true
		}
	}
	return nil, false
}

// CourseStats is the derived seat availability of a course. Never persisted.
type CourseStats struct {
	CourseID  string `json:"courseId"`
	Capacity  int    `json:"capacity"`
	Enrolled  int    `json:"enrolled"`
	IsFull    bool   `json:"isFull"`
	Remaining int    `json:"remaining"`
}

// NewCourseStats computes availability from a capacity and a seat count.
func NewCourseStats(courseID string, capacity, enrolled int) CourseStats {
	remaining := capacity - enrolled
	if remaining < 0 {
		remaining = 0
	}
	return CourseStats{
		CourseID:  courseID,
		Capacity:  capacity,
		Enrolled:  enrolled,
		IsFull:    enrolled >= capacity,
		Remaining: remaining,
	}
}

// CapacityOverride is an admin set capacity for a course.
type CapacityOverride struct {
	CourseID  string `db:"course_id" json:"courseId"`
	Capacity  int    `db:"capacity" json:"capacity"`
	UpdatedBy string `db:"updated_by" json:"updatedBy"`
}

// Cart holds at most one course for a user.
type Cart struct {
	UserID   string  `json:"userId"`
	CourseID *string `json:"courseId"`
}

// Empty reports whether the cart holds no course.
func (c Cart) Empty() bool {
	return c.CourseID == nil || *c.CourseID == ""
}
