/*
Package session runs persisted conversations.

A Manager turns the stateless interpreter into a session service: it loads
the snapshot of a session, resumes it with the caller's input, saves the
result and forwards new hand-offs to the host. Access to one session is
serialized locally and, when a DistributedLocker is configured, across
replicas.
*/
package session
