package idp

import (
	"encoding/json"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
)

// readJSON into interface
func readJSON(in io.ReadCloser, v interface{}) error {
	body, err := ioutil.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return errors.Wrap(err, "io read")
	}

	return errors.Wrap(json.Unmarshal(body, v), "json decode")
}

// readString into struct
func readString(in io.ReadCloser) string {
	body, err := ioutil.ReadAll(in)
	_ = in.Close()
	if err != nil {
		return ""
	}

	return string(body)
}

// remoteMessage extracts the provider message from an error body, raw body otherwise
func remoteMessage(body string) string {
	e := errorResponse{}
	if err := json.Unmarshal([]byte(body), &e); err != nil || e.Error.Message == "" {
		return body
	}
	return e.Error.Message
}
