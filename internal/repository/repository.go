// Package repository содержит хранилища договоров, фискальных документов, счётчиков и настроек эмитентов.
package repository

import (
	"errors"

	"github.com/mmeshcher/rental-billing/internal/model"
)

var (
	// ErrSaleNotFound возвращается, если договор не найден.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleExists возвращается при повторной записи договора с тем же идентификатором.
	ErrSaleExists = errors.New("sale already exists")
	// ErrDocumentNotFound возвращается, если фискальный документ не найден.
	ErrDocumentNotFound = errors.New("fiscal document not found")
	// ErrInvalidSaleTransition возвращается при недопустимой смене статуса договора.
	ErrInvalidSaleTransition = errors.New("invalid sale status transition")
	// ErrStaleDocument возвращается, если документ сменил статус, пока шла обработка.
	ErrStaleDocument = errors.New("fiscal document changed concurrently")
	// ErrAlreadyCancelled возвращается при повторной отмене документа.
	ErrAlreadyCancelled = errors.New("fiscal document already cancelled")
	// ErrDuplicateNumber возвращается, если номер документа уже занят в серии.
	ErrDuplicateNumber = errors.New("document number already used in series")
)

// Guard получает активные (не отменённые) договоры того же дома и решает, можно ли записать договор.
// Вызывается под блокировкой дома, поэтому проверка и запись атомарны.
type Guard func(existing []model.Sale) error

func cloneDocument(d *model.FiscalDocument) *model.FiscalDocument {
	c := *d
	if d.Authorization != nil {
		a := *d.Authorization
		c.Authorization = &a
	}
	if d.LastAttemptAt != nil {
		t := *d.LastAttemptAt
		c.LastAttemptAt = &t
	}
	return &c
}
