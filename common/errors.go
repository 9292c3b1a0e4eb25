package common

import (
	"errors"

	"xdao.co/dagfs/storage"
)

var (
	ErrNotFound              = errors.New("dagfs: path not found")
	ErrNotADirectory         = errors.New("dagfs: not a directory")
	ErrNotAFile              = errors.New("dagfs: not a file")
	ErrInvalidArgument       = errors.New("dagfs: invalid argument")
	ErrAuthenticationFailure = errors.New("dagfs: authentication failure")
	ErrDivergence            = errors.New("dagfs: ratchets do not share lineage")
	ErrAlreadyExists         = errors.New("dagfs: destination already exists")

	// ErrBlockNotFound is the block store's absence error; a referenced CID
	// with no backing block means the store is inconsistent.
	ErrBlockNotFound = storage.ErrNotFound
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsBlockNotFound(err error) bool { return errors.Is(err, ErrBlockNotFound) }

func IsAuthenticationFailure(err error) bool { return errors.Is(err, ErrAuthenticationFailure) }
