package users

var DummyPasswordHash = dummyPasswordHash
