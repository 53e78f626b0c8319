package activitypub

import "github.com/embervale/forumfed/util"

// KeyPair holds a freshly generated RSA keypair for a Person or Community
// actor, PEM-encoded in the PKCS#8/PKIX formats util.GeneratePemKeypair
// produces.
type KeyPair struct {
	PrivatePEM string
	PublicPEM  string
}

// GenerateActorKeyPair mints a new 2048-bit RSA keypair for a local actor.
// Every local Person and Community gets one of these at creation time (§4.1);
// remote actors instead have their public key fetched and cached.
func GenerateActorKeyPair() KeyPair {
	pair := util.GeneratePemKeypair()
	return KeyPair{PrivatePEM: pair.Private, PublicPEM: pair.Public}
}
