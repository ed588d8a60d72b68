package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicErrors attaches handler errors and the calling platform to the
// New Relic transaction started by nrgin.
func NewRelicErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}

		if key, ok := AccessKeyFrom(c); ok {
			txn.AddAttribute("platformId", key.Platform.ID)
		}
		if rideID := c.Param("rideId"); rideID != "" {
			txn.AddAttribute("rideId", rideID)
		}

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
