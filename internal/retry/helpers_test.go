package retry

import "github.com/productlens/extractor/internal/xerrors"

func configErrForTest() error {
	return xerrors.ConfigErr("test", "non-retryable", nil)
}
