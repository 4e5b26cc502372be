// Package textutil holds small string helpers shared across packages.
//
// SanitizeFileName strips filesystem-unsafe characters from user-supplied
// upload names before they are joined into upload_dir.
package textutil
