// Package command implements the transactional operations behind the mail
// service: creating broadcasts, bulk tagging, signup, opt-in and opt-out.
//
// Each command validates its input without touching the store, then runs all
// of its writes inside one transaction and reports a Result. Business
// rejections (unknown key, duplicate signup, bad input) are ordinary Results;
// store failures roll the transaction back and come back as failed Results.
// The package depends on the Store interface defined here and never imports
// the HTTP layer. The PostgreSQL implementation lives in repository/postgres.
package command
