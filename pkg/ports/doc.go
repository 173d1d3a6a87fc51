// Package ports defines the interfaces between the survey engine and its
// replaceable collaborators: survey document sources, session persistence,
// response logging, opt-out tracking, and distributed locking.
package ports
