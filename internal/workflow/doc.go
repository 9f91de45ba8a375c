// Package workflow runs checklist sessions.
//
// The Engine owns the session lifecycle (start, resume, archive-and-replace,
// finish), the per-step state machine and the closeout chain that turns a
// finished session into a registered report and an optional e-mail.
//
// Step state machine:
//
//	pending -> in_progress -> done
//	                       -> failed
//	pending -> done | failed        (started_at back-filled)
//
// done and failed are terminal; only annotation (same status, new note) is
// accepted afterwards. A critical step can only enter failed with a master
// credential.Grant, which records the override and an AUDIT entry.
//
// The engine keeps no "current session". Callers pass a SessionContext into
// every step operation.
package workflow
