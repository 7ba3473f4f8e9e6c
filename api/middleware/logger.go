package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"github.com/irsalhamdi/e-commerce-cart/core/claims"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			log := log.WithFields(logrus.Fields{
				"req_id": ContextRequestID(ctx),
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if id := claims.Identity(ctx); id != nil {
				log = log.WithField("account_id", id.AccountID)
			}

			log.Debug("started")
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			log.WithFields(logrus.Fields{
				"status": lw.Status(),
				"bytes":  lw.BytesWritten(),
				"took":   time.Since(start).String(),
			}).Info("completed")
			return err
		}
		return h
	}
	return m
}
