package models

import "errors"

var ErrInvalidProduct = errors.New("Name, price and store are required")
