package gateway

import (
	"context"
	"fmt"
	"time"
)

// Sandbox детерминированно имитирует фискальный орган для среды homologação.
// Документ с неположительной суммой отклоняется, остальные авторизуются.
type Sandbox struct {
	now func() time.Time
}

// NewSandbox создаёт имитацию; now задаёт источник времени (по умолчанию time.Now).
func NewSandbox(now func() time.Time) *Sandbox {
	if now == nil {
		now = time.Now
	}
	return &Sandbox{now: now}
}

// Authorize авторизует документ без сетевых вызовов.
func (s *Sandbox) Authorize(ctx context.Context, r Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ts := s.now().UTC()

	if !r.TotalValue.IsPositive() {
		return &Response{
			Success:   false,
			Rejected:  true,
			Error:     "total value must be positive",
			Timestamp: ts,
		}, nil
	}

	number := fmt.Sprintf("SBX-%s-%09d", r.Series, r.Number)

	return &Response{
		Success:         true,
		AuthorityNumber: number,
		AccessKey:       r.AccessKey,
		DocumentXML:     fmt.Sprintf(`<nfeProc><protNFe><nProt>%s</nProt><chNFe>%s</chNFe></protNFe></nfeProc>`, number, r.AccessKey),
		DocumentPDFURL:  fmt.Sprintf("sandbox://danfe/%s.pdf", number),
		Timestamp:       ts,
	}, nil
}
