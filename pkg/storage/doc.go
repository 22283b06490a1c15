// Package storage writes harvested attachments to the output tree.
//
// Writer turns attachment responses into files, deriving names from the
// Content-Disposition header. AlreadyComplete is the count-based guard
// that lets a rerun skip directories that already hold every attachment.
// All writes go through WriteFileAtomic.
package storage
