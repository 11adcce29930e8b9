package prov

// Version is the provsync release version.
const Version = "0.3.0"

// SchemaVersion identifies the canonical graph encoding used by Fingerprint.
const SchemaVersion = "1"
