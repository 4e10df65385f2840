package domain

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicateAccount     = errors.New("an account with this email already exists")
	ErrAccountCreation      = errors.New("could not create account")
	ErrCatalogLookup        = errors.New("could not retrieve item details")
	ErrUnknownItem          = errors.New("item is no longer available")
	ErrOrderPersistence     = errors.New("failed to create order record")
	ErrOrderItemPersistence = errors.New("failed to add items to order")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderUpdate          = errors.New("failed to update order")
	ErrInvalidTransition    = errors.New("order status transition not allowed")
	ErrShipmentNotFound     = errors.New("shipment not found")
	ErrShipmentCreation     = errors.New("failed to create shipment")
	ErrUpload               = errors.New("failed to upload file")
	ErrSignedURL            = errors.New("failed to create access url")
)
