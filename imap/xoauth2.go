package imap

import "github.com/emersion/go-sasl"

// xoauth2Client implements the XOAUTH2 mechanism as a sasl.Client.
// The initial response is "user=<user>\x01auth=Bearer <token>\x01\x01".
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// XOAUTH2 has no challenge-response round; a challenge only arrives on
// failure and is answered with an empty line by the session.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}
