// Package services defines the engine's collaborator boundaries: the remote
// upload transport and the per-account credential source.
//
// The engine only ever sees the [Transport] and [Credentials] interfaces;
// [YouTubeService] is the production implementation speaking the resumable
// upload protocol (session URI handshake, Content-Range chunks, 308 Resume
// Incomplete).
package services
