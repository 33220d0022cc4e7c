// Package campaign loads campaign files and expands them into the flat,
// ordered list of test cases the engine runs.
//
// A campaign is a Campaign root with Parameters, Targets and a TestCases
// block containing TestCase, SubCampaign and RANDOM children. Expansion
// follows document order:
//
//   - TestCase references are resolved against the working directory, the
//     execution-config root and the directory of the referencing campaign.
//     A case whose file or use case cannot be resolved stays in the list,
//     marked invalid with a diagnostic.
//   - SubCampaign references are expanded recursively and repeated
//     runNumber times. A file that is already on its own parent chain is an
//     INVALID_PARAMETER error.
//   - RANDOM marks its children random; each GROUP inside gets a fresh
//     group id. Shuffle applies the ordering policy at run time.
//
// Write serialises a Document back so that loading the written file yields
// the same expansion.
package campaign
