package seclient

import (
	"fmt"

	"github.com/dkrall/sevault/internal/apdu"
	"github.com/dkrall/sevault/internal/record"
)

// Fixed-width record operations: single-exchange store/read/delete
// against the record applet variant. No chunking, no transfer state;
// these do not interact with an in-flight chunked operation and refuse
// to run while one is live.

// StoreRecord packs the identity fields and message to their fixed
// widths and stores them. Returns the device-reported record index and
// the record count after the store.
func (c *Client) StoreRecord(username string, address, message []byte) (int, int, error) {
	if c.op != nil {
		return 0, 0, ErrOperationInFlight
	}
	data, err := packFixedRecord(username, address, message)
	if err != nil {
		return 0, 0, err
	}

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsRecordStore, Data: data, Le: apdu.LeAbsent,
	})
	if err != nil {
		return 0, 0, err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return 0, 0, statusErr(ErrInitRejected, out.SW)
	}
	if len(resp.Data) < 2 {
		return 0, 0, statusErr(ErrMalformedResponse, resp.SW)
	}
	index, count := int(resp.Data[0]), int(resp.Data[1])
	c.log.Debug().Int("index", index).Int("count", count).Msg("fixed record stored")
	return index, count, nil
}

// ReadRecord reads a fixed-width record back under signature
// authorization and returns the message with trailing zero padding
// stripped. Stripping is lossy for payloads that genuinely end in zero
// bytes; see record.StripPadding.
func (c *Client) ReadRecord(username string, address []byte, s record.Signer) ([]byte, error) {
	if c.op != nil {
		return nil, ErrOperationInFlight
	}
	data, err := packFixedAuth(username, address, s)
	if err != nil {
		return nil, err
	}

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsRecordRead, Data: data, Le: apdu.LeAbsent,
	})
	if err != nil {
		return nil, err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return nil, statusErr(ErrInitRejected, out.SW)
	}
	return record.StripPadding(resp.Data), nil
}

// DeleteRecord removes a record under signature authorization. Returns
// the deleted record's index and the count remaining.
func (c *Client) DeleteRecord(username string, address []byte, s record.Signer) (int, int, error) {
	if c.op != nil {
		return 0, 0, ErrOperationInFlight
	}
	data, err := packFixedAuth(username, address, s)
	if err != nil {
		return 0, 0, err
	}

	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: apdu.InsRecordDelete, Data: data, Le: apdu.LeAbsent,
	})
	if err != nil {
		return 0, 0, err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return 0, 0, statusErr(ErrInitRejected, out.SW)
	}
	if len(resp.Data) < 2 {
		return 0, 0, statusErr(ErrMalformedResponse, resp.SW)
	}
	index, remaining := int(resp.Data[0]), int(resp.Data[1])
	c.log.Debug().Int("index", index).Int("remaining", remaining).Msg("fixed record deleted")
	return index, remaining, nil
}

func packFixedRecord(username string, address, message []byte) ([]byte, error) {
	key, err := record.FixedAuthBytes(username, address)
	if err != nil {
		return nil, err
	}
	msg, err := record.PadRight(message, record.FixedMessageLen)
	if err != nil {
		return nil, err
	}
	return append(key, msg...), nil
}

func packFixedAuth(username string, address []byte, s record.Signer) ([]byte, error) {
	key, err := record.FixedAuthBytes(username, address)
	if err != nil {
		return nil, err
	}
	sig, err := s.Sign(key)
	if err != nil {
		return nil, fmt.Errorf("seclient: sign record key: %w", err)
	}
	if err := record.ValidateDER(sig); err != nil {
		return nil, err
	}
	return append(key, sig...), nil
}

// GetCPLC fetches and caches the card production lifecycle data.
func (c *Client) GetCPLC() ([]byte, error) {
	if c.cplc != nil {
		return cloneBytes(c.cplc), nil
	}
	resp, err := c.exchange(apdu.Command{
		Cla: apdu.Cla, Ins: 0xCA, P1: 0x9F, P2: 0x7F, Le: 0,
	})
	if err != nil {
		return nil, err
	}
	if out := resp.Outcome(); out.Kind != apdu.OutcomeSuccess {
		return nil, statusErr(ErrInitRejected, out.SW)
	}
	// Expected shape: tag 9F7F, one length byte, then the data.
	if len(resp.Data) < 3 || resp.Data[0] != 0x9F || resp.Data[1] != 0x7F {
		return nil, statusErr(ErrMalformedResponse, resp.SW)
	}
	n := int(resp.Data[2])
	if len(resp.Data) != 3+n {
		return nil, statusErr(ErrMalformedResponse, resp.SW)
	}
	c.cplc = cloneBytes(resp.Data[3:])
	return cloneBytes(c.cplc), nil
}
