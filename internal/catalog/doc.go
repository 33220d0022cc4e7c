// Package catalog loads the XML catalogs that declare use cases, test steps,
// shared parameters, equipment models and device models.
//
// Each catalog root contains one sub-directory per kind (UseCase, TestStep,
// Parameter, Equipment, DeviceModel) and an optional taxonomy.yaml. Every
// file is checked against the structural schema of its kind and, for use
// cases and test steps, the Domain/SubDomain/Feature triple is checked
// against the taxonomy.
//
// Loading is fail-fast per file but continues across files; all problems are
// returned together as a config.ConfigurationErrorCollection wrapped in an
// *api.Error. A duplicated id is PROHIBITIVE_BEHAVIOR.
//
// Stores are immutable after load and need no locking.
package catalog
