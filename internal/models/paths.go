package models

import "github.com/anonto42/nano-midea/socialgraph/internal/store"

// Collection names.
const (
	UsersCollection         store.Path = "users"
	PostsCollection         store.Path = "posts"
	followingCollection                = "following"
	followersCollection                = "followers"
	notificationsCollection            = "notifications"
	likesCollection                    = "likes"
	commentsCollection                 = "comments"
)

func UserPath(uid string) store.Path {
	return UsersCollection.Doc(uid)
}

// FollowingCollection lists the users uid follows.
func FollowingCollection(uid string) store.Path {
	return UserPath(uid).Collection(followingCollection)
}

// FollowersCollection lists the users following uid.
func FollowersCollection(uid string) store.Path {
	return UserPath(uid).Collection(followersCollection)
}

// FollowingPath is the follower-side mirror of the edge uid -> target.
func FollowingPath(uid, target string) store.Path {
	return FollowingCollection(uid).Doc(target)
}

// FollowersPath is the followee-side mirror of the edge uid -> target.
func FollowersPath(target, uid string) store.Path {
	return FollowersCollection(target).Doc(uid)
}

func NotificationsCollection(uid string) store.Path {
	return UserPath(uid).Collection(notificationsCollection)
}

func NotificationPath(uid, id string) store.Path {
	return NotificationsCollection(uid).Doc(id)
}

func PostPath(postID string) store.Path {
	return PostsCollection.Doc(postID)
}

func PostLikesCollection(postID string) store.Path {
	return PostPath(postID).Collection(likesCollection)
}

func PostLikePath(postID, uid string) store.Path {
	return PostLikesCollection(postID).Doc(uid)
}

func CommentsCollection(postID string) store.Path {
	return PostPath(postID).Collection(commentsCollection)
}

func CommentPath(postID, commentID string) store.Path {
	return CommentsCollection(postID).Doc(commentID)
}

func CommentLikesCollection(postID, commentID string) store.Path {
	return CommentPath(postID, commentID).Collection(likesCollection)
}

func CommentLikePath(postID, commentID, uid string) store.Path {
	return CommentLikesCollection(postID, commentID).Doc(uid)
}
