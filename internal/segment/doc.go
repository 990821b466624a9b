// Package segment removes the backdrop from raw object photographs so they can be
// used as sprites.
//
// Two removers are provided:
//
//   - KeyRemover: a built-in colour key. The backdrop colour is estimated from the
//     photo border and every pixel within a CIE Lab distance of it becomes transparent.
//   - CommandRemover: delegates to an external salient-object segmentation program
//     that reads a PNG on stdin and writes the cut-out PNG on stdout.
//
// Both trim the result to the bounding rectangle of its visible pixels. A result with
// no visible pixels is reported as ErrEmptyMask.
package segment
