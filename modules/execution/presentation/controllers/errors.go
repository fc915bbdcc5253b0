package controllers

import "errors"

var errMissingStreamKey = errors.New("execution id or test case id is required")
