package types

// Version is the canonical project version.
// The CLI, the library and published notifications share this version.
const Version = "0.1.0"

// ContractVersion is stamped on published notifications. Lockstep with Version.
const ContractVersion = Version
