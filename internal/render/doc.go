// Package render draws a styled caption onto a 2D surface.
//
// Draw is the only routine that puts caption pixels on a surface: the live
// overlay and every exported frame go through it (via Overlay), so a preview
// and an export of the same caption at the same scale are pixel-identical.
// Every size-dependent style value is multiplied by the caller's scale, and
// glyph advances are measured once at the style's reference size, so layout
// grows exactly linearly with scale.
package render
