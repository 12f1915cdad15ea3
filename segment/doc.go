// Package segment previews how a knowledge dataset will cut registered text
// into segments under the custom process rule plantdesk sends at registration.
//
// The preview runs locally and is never sent upstream. Lengths are counted in
// runes, which never undercounts tokens for the scripts found in plant manuals.
package segment
