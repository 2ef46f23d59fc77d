package models

// TransitionKind is the decision produced for one scan cycle.
type TransitionKind int

const (
	TransitionRetry TransitionKind = iota
	TransitionAccept
	TransitionEscalate
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionAccept:
		return "accept"
	case TransitionEscalate:
		return "escalate"
	default:
		return "retry"
	}
}

// Method records how an identity was established.
type Method string

const (
	MethodFace       Method = "face"
	MethodOCR        Method = "ocr"
	MethodNationalID Method = "national_id"
)

// Reason explains a retry or escalation.
type Reason string

const (
	ReasonNoFace             Reason = "no_face"
	ReasonFaceUnrecognized   Reason = "face_unrecognized"
	ReasonUnconfirmed        Reason = "recognized_unconfirmed"
	ReasonNetwork            Reason = "network_error"
	ReasonAttemptsExhausted  Reason = "attempts_exhausted"
	ReasonBudgetExhausted    Reason = "budget_exhausted"
	ReasonManualChoice       Reason = "manual_choice"
	ReasonNationalIDNotFound Reason = "national_id_not_found"
)

// Transition is what the policy asks the state machine to do next.
type Transition struct {
	Kind     TransitionKind
	Identity *PatientIdentity
	Method   Method
	Target   Step
	Reason   Reason
	Message  string
}

func Accept(identity PatientIdentity, method Method) Transition {
	return Transition{Kind: TransitionAccept, Identity: &identity, Method: method, Target: StepSuccess}
}

func Retry(reason Reason, message string) Transition {
	return Transition{Kind: TransitionRetry, Target: StepFaceScan, Reason: reason, Message: message}
}

func Escalate(to Step, reason Reason, message string) Transition {
	return Transition{Kind: TransitionEscalate, Target: to, Reason: reason, Message: message}
}
