// Package textutil holds small string helpers shared by the CLI, chiefly
// turning caption and video names into safe output file names.
package textutil
