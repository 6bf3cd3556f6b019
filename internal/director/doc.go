// Package director owns the decision-service side of the transport: the TCP
// listener, admission control, the single-session registry, and the inbound
// codec -> authenticator -> dispatcher path.
//
// Ownership boundary:
// - admission policy (replace-on-connect vs reject-extra)
// - session registry writes (accept and close handling only)
// - outbound send path addressed through the registry
package director
