package message

import "time"

// Provisioning is emitted by PreProvisionAgent once a vApp has been
// composed; uri locates the new vApp for later polling.
type Provisioning struct {
	UUID string
	URI  string
}

// CheckRequired is emitted by ProvisioningAgent once the customisation
// script has been installed and at least the configured dwell time has
// elapsed.
type CheckRequired struct {
	UUID string
}

// CheckedAsOperational is emitted by PreCheckAgent when the vApp's
// customisation script is in place and the artifact has a prior
// operational report. The vApp's deployment status is not checked.
type CheckedAsOperational struct {
	UUID     string
	Provider string
	IP       string
	Creation string
}

// CheckedAsPreOperational is emitted by PreCheckAgent when the vApp's
// customisation script is in place but the artifact has never been
// reported operational before. The deployment status is not checked.
type CheckedAsPreOperational struct {
	UUID     string
	Provider string
	IP       string
	Creation string
}

// CheckedAsProvisioning is emitted by PreCheckAgent when the customisation
// script is absent from the vApp or has five lines or fewer, sending the
// artifact back to ProvisioningAgent's trigger state.
type CheckedAsProvisioning struct {
	UUID     string
	Provider string
}

// Operational is emitted by PreOperationalAgent after successful NAT and
// firewall rule application, or immediately for a non-NAT-routed appliance.
type Operational struct {
	UUID  string
	IPInt string
	IPExt string
}

// ResourceConstrained is emitted by PreOperationalAgent when the free
// public-IP pool for the organisation's subscription is exhausted.
type ResourceConstrained struct {
	UUID string
}

// Running is emitted by PreStartAgent after a successful deploy-with-power
// POST.
type Running struct {
	UUID string
}

// Stopped is emitted by PreStopAgent after a successful undeploy POST.
type Stopped struct {
	UUID string
}

// Deleted is emitted by PreDeleteAgent after a successful vApp DELETE.
type Deleted struct {
	UUID string
}

// TokenReceived is emitted by the token ingress agent once it has
// exchanged a named-pipe record for a bearer header via a provider session
// POST.
type TokenReceived struct {
	UUID     string
	At       time.Time
	Provider string
	Key      string
	Value    string
}

// TouchToPrevious re-records a membership artifact's current state as a
// new Touch, a benign audit entry rather than an error. No agent registers
// a handler for it, so the dispatcher logs a warning and applies nothing.
type TouchToPrevious struct {
	UUID string
}
