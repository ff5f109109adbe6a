// Package profile defines the canonical user profile and the field table that
// maps it to and from the record shape every backing store speaks.
//
// # Canonical Schema
//
// All stores share one snake_case key space ("user_id", "budget_min",
// "is_active", ...). Callers may hand in camelCase payloads; Normalize renames
// every key before a write fans out so each adapter sees an identical record.
//
// # Field Table
//
// Fields lists every typed attribute of Profile together with its canonical
// key. Decoding (FromRecord) and encoding (Profile.Record) walk that table,
// so adding an attribute means adding one struct field and one table row.
// Keys that are not in the table are kept in Profile.Extra and pass through
// to the schemaless stores untouched.
//
// # Usage
//
//	rec := profile.Normalize(profile.Record{"userId": "u1", "budgetMin": 500})
//	p := profile.FromRecord(rec)
//	p = profile.Merge(p, profile.Record{"city": "Austin"})
package profile
