/*
Package converter maps between the three shapes a flow takes: the raw JSON
written by editors (including legacy field names), the canonical domain.Flow,
and the visual node/edge graph drawn on a canvas.

Normalization happens once, at the boundary. Everything downstream of Parse or
Normalize works on canonical steps and never inspects legacy names.
*/
package converter
