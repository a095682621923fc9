package client

import "fmt"

// POSIX errno names, used to render negative shell return codes
var errnoNames = map[int]string{
	1: "EPERM",
	2: "ENOENT",
	3: "ESRCH",
	4: "EINTR",
	5: "EIO",
	6: "ENXIO",
	7: "E2BIG",
	8: "ENOEXEC",
	9: "EBADF",
	10: "ECHILD",
	11: "EAGAIN",
	12: "ENOMEM",
	13: "EACCES",
	14: "EFAULT",
	15: "ENOTBLK",
	16: "EBUSY",
	17: "EEXIST",
	18: "EXDEV",
	19: "ENODEV",
	20: "ENOTDIR",
	21: "EISDIR",
	22: "EINVAL",
	23: "ENFILE",
	24: "EMFILE",
	25: "ENOTTY",
	26: "ETXTBSY",
	27: "EFBIG",
	28: "ENOSPC",
	29: "ESPIPE",
	30: "EROFS",
	31: "EMLINK",
	32: "EPIPE",
	33: "EDOM",
	34: "ERANGE",
	35: "EDEADLK",
	36: "ENAMETOOLONG",
	37: "ENOLCK",
	38: "ENOSYS",
	39: "ENOTEMPTY",
	42: "ENOMSG",
	70: "ECOMM",
	71: "EPROTO",
	75: "EOVERFLOW",
	90: "EMSGSIZE",
	95: "ENOTSUP",
	110: "ETIMEDOUT",
	113: "EHOSTUNREACH",
	125: "ECANCELED",
}

// ErrnoName renders a positive errno value as its POSIX name
func ErrnoName(errno int) string {
	if name, ok := errnoNames[errno]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", errno)
}
