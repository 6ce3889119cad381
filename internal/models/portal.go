package models

// PortalView is the screen the student portal should render.
type PortalView string

const (
	PortalSignIn          PortalView = "sign_in"
	PortalLoading         PortalView = "loading"
	PortalError           PortalView = "error"
	PortalDashboard       PortalView = "dashboard"
	PortalApplicationForm PortalView = "application_form"
	PortalInProcess       PortalView = "in_process"
	PortalRejected        PortalView = "rejected"
	PortalFinalizing      PortalView = "finalizing"
)

// PortalInput collects the facts the portal decision depends on.
type PortalInput struct {
	Authenticated bool
	Loading       bool
	LoadErr       error
	HasStudent    bool
	Application   *Application
}

// ResolvePortalView picks the portal view with precedence
// unauthenticated > loading > error > student record > application status.
func ResolvePortalView(in PortalInput) PortalView {
	switch {
	case !in.Authenticated:
		return PortalSignIn
	case in.Loading:
		return PortalLoading
	case in.LoadErr != nil:
		return PortalError
	case in.HasStudent:
		return PortalDashboard
	case in.Application == nil:
		return PortalApplicationForm
	}

	switch in.Application.Status {
	case ApplicationSubmitted, ApplicationUnderReview:
		return PortalInProcess
	case ApplicationRejected:
		return PortalRejected
	case ApplicationApproved:
		return PortalFinalizing
	default:
		return PortalApplicationForm
	}
}

// VisaLetterUnlocked is true only when enrollment is confirmed, payment is recorded
// and at least one identity document was approved.
func VisaLetterUnlocked(enrollmentConfirmed, hasApprovedDocument, paid bool) bool {
	return enrollmentConfirmed && hasApprovedDocument && paid
}

// VisaRequirements lists which visa letter preconditions are met.
type VisaRequirements struct {
	EnrollmentConfirmed bool `json:"enrollmentConfirmed"`
	DocumentApproved    bool `json:"documentApproved"`
	Paid                bool `json:"paid"`
	Unlocked            bool `json:"unlocked"`
}

// NewVisaRequirements evaluates the visa letter gate for an identity.
func NewVisaRequirements(user *User, docs []Document) VisaRequirements {
	req := VisaRequirements{
		EnrollmentConfirmed: user != nil && user.EnrollmentStatus.Confirmed(),
		DocumentApproved:    HasApprovedDocument(docs),
		Paid:                user != nil && user.PaymentStatus == PaymentPaid,
	}
	req.Unlocked = VisaLetterUnlocked(req.EnrollmentConfirmed, req.DocumentApproved, req.Paid)
	return req
}

// Portal is the assembled portal state returned to the student.
type Portal struct {
	View         PortalView       `json:"view"`
	Retryable    bool             `json:"retryable,omitempty"`
	Error        string           `json:"error,omitempty"`
	User         *UserInfo        `json:"user,omitempty"`
	Application  *Application     `json:"application,omitempty"`
	Student      *Student         `json:"student,omitempty"`
	Documents    []Document       `json:"documents,omitempty"`
	VisaLetter   VisaRequirements `json:"visaLetter"`
	CourseTitle  string           `json:"courseTitle,omitempty"`
	RejectReason string           `json:"rejectionReason,omitempty"`
}
