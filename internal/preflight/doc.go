// Package preflight provides readiness checks for the external tools,
// services, and filesystem paths captioner depends on.
//
// These checks run in two contexts:
//   - The export renderer calls CheckFreeSpace before opening an encoder so a
//     long render does not die on a full disk.
//   - The CLI "captioner status" command calls RunAll and CheckSystemDeps to
//     display dependency and directory health.
//
// Backend checks are gated by the configured transcription backend.
package preflight
