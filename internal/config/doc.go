// Package config provides the typed configuration records of an acs run.
//
// Every record is built once while the campaign is loaded and then passed
// explicitly to the components that need it:
//
//   - Options: the command line invocation
//   - Paths: execution-config, catalog, report and artifact roots
//   - CampaignConfig: Parameters and Targets of the root campaign
//   - BenchConfig: phones and equipments of the bench-config file
//   - DeviceConfig: per device merge of model defaults, bench entry and
//     -o overrides
//
// All parameter sets are Values, an immutable string map with typed
// getters (GetString, GetInt, GetBool, GetFloat, GetDuration).
//
// # Environment
//
// ACS_EXECUTION_CONFIG_PATH overrides the execution-config root
// (default ./_ExecutionConfig). ACS_CATALOG_PATH overrides the catalog
// roots (default ./_Catalogs) and accepts several paths separated by the
// host list separator.
//
// # Errors
//
// Loaders that read many files collect failures in a
// ConfigurationErrorCollection so one pass reports every broken file.
package config
