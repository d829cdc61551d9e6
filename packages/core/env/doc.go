// Package env expands {{...}} placeholders in request documents and CLI
// arguments.
//
// A placeholder is one of:
//   - {{name}}: a variable set with --var or loaded from a .env file
//   - {{$NAME}}: a process environment variable
//   - {{fn(args)}}: a built-in function such as uuid(), now() or random(1,10)
//
// Unresolved placeholders are left in place by Resolve and reported as an
// error by Expand.
package env
