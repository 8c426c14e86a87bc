// Package verification implements the Ralph architect-verification
// sub-loop: a completion claim inside Ralph must be reviewed by a distinct
// architect role before the loop is allowed to truly exit.
package verification
