// Package auth turns an inbound request into an authorized actor.
//
// The pipeline has four stages, each usable on its own:
//
//  1. The tenant is read from the organisation header (package tenant).
//  2. An [ActorResolver] identifies the caller. [DevResolver] trusts
//     request headers and exists for local development only;
//     [OIDCResolver] verifies a bearer token against the identity
//     provider's published keys and maps it to a provisioned
//     [models.UserAccount].
//  3. The [Gate] confirms the account belongs to the tenant.
//  4. [HasPermission] checks the account's role against a static
//     role-to-action matrix.
//
// The authentication mode is fixed at startup by [NewActorResolver]. No
// stage reads identity from ambient context; the resolved [Principal] is
// passed to handlers as an argument.
//
// Failures are *sserr.Error values whose codes map to 400, 401, 403 or 500.
// Identity-provider outages surface to clients as an invalid bearer token
// and are logged server-side.
package auth
