// Package scene loads scene files and builds them into generators.
//
// A scene is written in YAML or CUE. CUE files are unified with the
// embedded #Scene schema before decoding; YAML files are decoded through
// yaml.Node so errors can point at the generator's line. Both then go
// through struct-tag validation and Build, which turns every generator
// config into a running gen.Generator.
//
// Build runs in one of two modes carried over from spec loading:
// LoadModeFailFast stops at the first error, LoadModeCollectAll reports
// every bad generator and skips it.
package scene
